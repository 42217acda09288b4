package command

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/drone-simulator/model"
)

// Wire messages are google.protobuf.Struct values with these fields:
//
//	AddDrones request           {"types": ["circle", ...], "count": 10}
//	AddDrones response          {"added": ["<id>", ...], "rejected": 0}
//	SetVisibilityFilter request {"types": ["square", ...]}
//	GetVisibilityFilter reply   {"types": [...]}
//	ListDrones response         {"drones": [{"id": ..., "type": ..., ...}]}

func flagsToValue(f model.DroneFlags) *structpb.Value {
	types := f.Types()
	vals := make([]*structpb.Value, len(types))
	for i, t := range types {
		vals[i] = structpb.NewStringValue(string(t))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func flagsFromStruct(s *structpb.Struct) (model.DroneFlags, error) {
	var f model.DroneFlags
	v, ok := s.GetFields()["types"]
	if !ok {
		return f, nil
	}
	list := v.GetListValue()
	if list == nil {
		return f, fmt.Errorf("%w: types must be a list of strings", ErrInvalidCommand)
	}
	for _, item := range list.GetValues() {
		sv, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return f, fmt.Errorf("%w: types must be a list of strings", ErrInvalidCommand)
		}
		t, err := model.ParseDroneType(sv.StringValue)
		if err != nil {
			return f, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		f = f.With(t, true)
	}
	return f, nil
}

func newAddRequest(types model.DroneFlags, count int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"types": flagsToValue(types),
		"count": structpb.NewNumberValue(float64(count)),
	}}
}

func parseAddRequest(s *structpb.Struct) (model.DroneFlags, int, error) {
	types, err := flagsFromStruct(s)
	if err != nil {
		return types, 0, err
	}
	n := s.GetFields()["count"].GetNumberValue()
	if n != math.Trunc(n) || n > math.MaxInt32 {
		return types, 0, fmt.Errorf("%w: count must be an integer", ErrInvalidCommand)
	}
	return types, int(n), nil
}

func addResultToStruct(r AddResult) *structpb.Struct {
	ids := make([]*structpb.Value, len(r.Added))
	for i, id := range r.Added {
		ids[i] = structpb.NewStringValue(id)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"added":    structpb.NewListValue(&structpb.ListValue{Values: ids}),
		"rejected": structpb.NewNumberValue(float64(r.Rejected)),
	}}
}

func addResultFromStruct(s *structpb.Struct) AddResult {
	var r AddResult
	for _, v := range s.GetFields()["added"].GetListValue().GetValues() {
		r.Added = append(r.Added, v.GetStringValue())
	}
	r.Rejected = int(s.GetFields()["rejected"].GetNumberValue())
	return r
}

func snapshotToValue(d model.DroneSnapshot) *structpb.Value {
	fields := map[string]*structpb.Value{
		"id":          structpb.NewStringValue(d.ID),
		"type":        structpb.NewStringValue(string(d.Type)),
		"lat":         structpb.NewNumberValue(d.Location.Lat),
		"lng":         structpb.NewNumberValue(d.Location.Lng),
		"ecef_x":      structpb.NewNumberValue(d.ECEF.X),
		"ecef_y":      structpb.NewNumberValue(d.ECEF.Y),
		"ecef_z":      structpb.NewNumberValue(d.ECEF.Z),
		"speed_ms":    structpb.NewNumberValue(d.SpeedMS),
		"visible":     structpb.NewBoolValue(d.Visible),
		"expanded":    structpb.NewBoolValue(d.Expanded),
		"highlighted": structpb.NewBoolValue(d.Highlighted),
	}
	if d.TTL != nil {
		fields["ttl"] = structpb.NewNumberValue(*d.TTL)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func snapshotFromStruct(s *structpb.Struct) model.DroneSnapshot {
	f := s.GetFields()
	d := model.DroneSnapshot{
		ID:          f["id"].GetStringValue(),
		Type:        model.DroneType(f["type"].GetStringValue()),
		Location:    model.GeoPoint{Lat: f["lat"].GetNumberValue(), Lng: f["lng"].GetNumberValue()},
		ECEF:        model.Motion{X: f["ecef_x"].GetNumberValue(), Y: f["ecef_y"].GetNumberValue(), Z: f["ecef_z"].GetNumberValue()},
		SpeedMS:     f["speed_ms"].GetNumberValue(),
		Visible:     f["visible"].GetBoolValue(),
		Expanded:    f["expanded"].GetBoolValue(),
		Highlighted: f["highlighted"].GetBoolValue(),
	}
	if v, ok := f["ttl"]; ok {
		ttl := v.GetNumberValue()
		d.TTL = &ttl
	}
	return d
}

func listToStruct(drones []model.DroneSnapshot) *structpb.Struct {
	vals := make([]*structpb.Value, len(drones))
	for i, d := range drones {
		vals[i] = snapshotToValue(d)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"drones": structpb.NewListValue(&structpb.ListValue{Values: vals}),
	}}
}

func listFromStruct(s *structpb.Struct) []model.DroneSnapshot {
	items := s.GetFields()["drones"].GetListValue().GetValues()
	out := make([]model.DroneSnapshot, 0, len(items))
	for _, v := range items {
		out = append(out, snapshotFromStruct(v.GetStructValue()))
	}
	return out
}
