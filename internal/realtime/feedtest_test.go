package realtime

import (
	"testing"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

func marshalFeed(t *testing.T, ts uint64, entities ...*gtfs.FeedEntity) []byte {
	t.Helper()
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(ts),
		},
		Entity: entities,
	}
	b, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	return b
}

func vehicleEntity(id, tripID string, lat, lon float32) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		Vehicle: &gtfs.VehiclePosition{
			Trip:     &gtfs.TripDescriptor{TripId: proto.String(tripID)},
			Vehicle:  &gtfs.VehicleDescriptor{Id: proto.String(id)},
			Position: &gtfs.Position{Latitude: proto.Float32(lat), Longitude: proto.Float32(lon)},
		},
	}
}

func tripUpdateEntity(id, tripID, stopID string, arrival int64) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		TripUpdate: &gtfs.TripUpdate{
			Trip: &gtfs.TripDescriptor{TripId: proto.String(tripID)},
			StopTimeUpdate: []*gtfs.TripUpdate_StopTimeUpdate{{
				StopId:  proto.String(stopID),
				Arrival: &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(arrival)},
			}},
		},
	}
}
