package memory

import (
	"encoding/json"
	"fmt"
)

// BucketNames lists the snapshot buckets in the order backends persist them.
var BucketNames = []string{
	"labware_types",
	"labware",
	"samples",
	"operations",
	"actions",
	"operation_comments",
	"operation_equipment",
	"plans",
	"planned_actions",
	"operation_types",
	"works",
	"comments",
	"equipment",
	"users",
	"sequences",
}

func (s *Snapshot) bucketTargets() map[string]any {
	return map[string]any{
		"labware_types":       &s.LabwareTypes,
		"labware":             &s.Labware,
		"samples":             &s.Samples,
		"operations":          &s.Operations,
		"actions":             &s.Actions,
		"operation_comments":  &s.OpComments,
		"operation_equipment": &s.OpEquipment,
		"plans":               &s.Plans,
		"planned_actions":     &s.PlannedActions,
		"operation_types":     &s.OperationTypes,
		"works":               &s.Works,
		"comments":            &s.Comments,
		"equipment":           &s.Equipment,
		"users":               &s.Users,
		"sequences":           &s.Sequences,
	}
}

// EncodeBuckets renders each snapshot bucket as a JSON payload keyed by bucket name.
func (s Snapshot) EncodeBuckets() (map[string][]byte, error) {
	targets := s.bucketTargets()
	out := make(map[string][]byte, len(BucketNames))
	for _, name := range BucketNames {
		data, err := json.Marshal(targets[name])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// DecodeBucket fills the named bucket of the snapshot from a JSON payload.
// Unknown bucket names and empty payloads are ignored.
func (s *Snapshot) DecodeBucket(name string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	target, ok := s.bucketTargets()[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
