package serializer

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/kvs/lib/db"
	"github.com/ValentinKolb/kvs/rpc/common"
)

// benchmarkTraffic is what one client session sends and receives, requests and their responses
var benchmarkTraffic = []struct {
	name string
	msg  common.Message
}{
	{"set-req", *common.NewSetRequest("perf/set/000042", []byte("test"))},
	{"set-resp", *common.NewSetResponse(nil)},
	{"set-large-req", *common.NewSetRequest("perf/set-large/000042", bytes.Repeat([]byte{0xab}, 100*1024))},
	{"get-req", *common.NewGetRequest("perf/get/000042")},
	{"get-resp", *common.NewGetResponse([]byte("test"), true, nil)},
	{"get-not-resp", *common.NewGetResponse(nil, false, nil)},
	{"rm-req", *common.NewRemoveRequest("perf/rm/000042")},
	{"rm-not-resp", *common.NewRemoveResponse(db.ErrKeyNotFound)},
	{"info-resp", *common.NewInfoResponse([]byte(`{"engine":"kvs","keys":100000,"generations":3}`), nil)},
}

// BenchmarkSerializers encodes and decodes the session traffic with every serializer and reports the encoded size
func BenchmarkSerializers(b *testing.B) {
	for name, factory := range testSerializers {
		serializer := factory()

		for _, tc := range benchmarkTraffic {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				b.Fatalf("%s: failed to serialize %s: %v", name, tc.name, err)
			}

			b.Run(name+"/encode/"+tc.name, func(b *testing.B) {
				b.ReportMetric(float64(len(data)), "bytes")
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(tc.msg); err != nil {
						b.Fatal(err)
					}
				}
			})

			b.Run(name+"/decode/"+tc.name, func(b *testing.B) {
				b.ReportAllocs()
				var msg common.Message
				for i := 0; i < b.N; i++ {
					if err := serializer.Deserialize(data, &msg); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
