package realtime

import (
	"fmt"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// FeedUnavailableError reports a realtime feed that could not be fetched
// or decoded. The previous snapshot for that feed stays in effect.
type FeedUnavailableError struct {
	Feed string
	Err  error
}

func (e *FeedUnavailableError) Error() string {
	return fmt.Sprintf("realtime feed %s unavailable: %v", e.Feed, e.Err)
}

func (e *FeedUnavailableError) Unwrap() error { return e.Err }

// Some producers omit proto2 required fields; accept those envelopes.
var unmarshal = proto.UnmarshalOptions{AllowPartial: true}

func decodeFeed(feedName string, body []byte) (*gtfs.FeedMessage, error) {
	feed := &gtfs.FeedMessage{}
	if err := unmarshal.Unmarshal(body, feed); err != nil {
		return nil, &FeedUnavailableError{Feed: feedName, Err: fmt.Errorf("parse protobuf: %w", err)}
	}
	return feed, nil
}

// DecodeVehiclePositions decodes a vehicle positions feed. Entities without
// a position are dropped. The returned time is the feed header timestamp.
func DecodeVehiclePositions(body []byte) ([]Vehicle, time.Time, error) {
	feed, err := decodeFeed(FeedVehiclePositions, body)
	if err != nil {
		return nil, time.Time{}, err
	}

	vehicles := make([]Vehicle, 0, len(feed.GetEntity()))
	for _, entity := range feed.GetEntity() {
		vp := entity.GetVehicle()
		if vp == nil || entity.GetIsDeleted() {
			continue
		}
		pos := vp.GetPosition()
		if pos == nil || pos.Latitude == nil || pos.Longitude == nil {
			continue
		}

		v := Vehicle{
			ID:      vp.GetVehicle().GetId(),
			TripID:  vp.GetTrip().GetTripId(),
			RouteID: vp.GetTrip().GetRouteId(),
			Lat:     float64(pos.GetLatitude()),
			Lon:     float64(pos.GetLongitude()),
			StopID:  vp.GetStopId(),
			Label:   vp.GetVehicle().GetLabel(),
			Plate:   vp.GetVehicle().GetLicensePlate(),
		}
		if v.ID == "" {
			v.ID = entity.GetId()
		}
		if trip := vp.GetTrip(); trip != nil {
			if trip.DirectionId != nil {
				d := int(trip.GetDirectionId())
				v.DirectionID = &d
			}
			if trip.ScheduleRelationship != nil {
				v.ScheduleRelationship = trip.GetScheduleRelationship().String()
			}
		}
		if pos.Bearing != nil {
			b := float64(pos.GetBearing())
			v.Bearing = &b
		}
		if pos.Speed != nil {
			s := float64(pos.GetSpeed())
			v.Speed = &s
		}
		if ts := vp.GetTimestamp(); ts > 0 {
			v.Timestamp = time.Unix(int64(ts), 0).UTC()
		}
		if vp.CurrentStopSequence != nil {
			seq := int(vp.GetCurrentStopSequence())
			v.CurrentStopSequence = &seq
		}
		if vp.CongestionLevel != nil {
			v.CongestionLevel = vp.GetCongestionLevel().String()
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, headerTime(feed), nil
}

// DecodeTripUpdates decodes a trip updates feed. Entities without a trip
// identifier are dropped.
func DecodeTripUpdates(body []byte) ([]TripUpdate, time.Time, error) {
	feed, err := decodeFeed(FeedTripUpdates, body)
	if err != nil {
		return nil, time.Time{}, err
	}

	updates := make([]TripUpdate, 0, len(feed.GetEntity()))
	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil || entity.GetIsDeleted() {
			continue
		}
		tripID := tu.GetTrip().GetTripId()
		if tripID == "" {
			continue
		}

		u := TripUpdate{
			TripID:    tripID,
			RouteID:   tu.GetTrip().GetRouteId(),
			VehicleID: tu.GetVehicle().GetId(),
		}
		if ts := tu.GetTimestamp(); ts > 0 {
			u.Timestamp = time.Unix(int64(ts), 0).UTC()
		}
		for _, stu := range tu.GetStopTimeUpdate() {
			p := StopTimePrediction{
				StopID:    stu.GetStopId(),
				Arrival:   eventTime(stu.GetArrival()),
				Departure: eventTime(stu.GetDeparture()),
			}
			if stu.StopSequence != nil {
				seq := int(stu.GetStopSequence())
				p.StopSequence = &seq
			}
			u.StopTimes = append(u.StopTimes, p)
		}
		updates = append(updates, u)
	}
	return updates, headerTime(feed), nil
}

func eventTime(ev *gtfs.TripUpdate_StopTimeEvent) time.Time {
	if t := ev.GetTime(); t > 0 {
		return time.Unix(t, 0).UTC()
	}
	return time.Time{}
}

func headerTime(feed *gtfs.FeedMessage) time.Time {
	if ts := feed.GetHeader().GetTimestamp(); ts > 0 {
		return time.Unix(int64(ts), 0).UTC()
	}
	return time.Time{}
}
