package codec

import (
	"encoding/json"
	"fmt"

	"github.com/lodestar-data/lodestar/pkg/domain"
)

// ContentTypeJSON is the declared media type of every generic aspect blob.
const ContentTypeJSON = "application/json"

// GenericAspect is the content-typed opaque form an aspect takes on the
// wire and in the catalog's storage layer.
type GenericAspect struct {
	Value       []byte `json:"value"`
	ContentType string `json:"contentType"`
}

// MarshalJSON renders the blob with its value as text, matching the
// catalog's REST representation, instead of Go's default base64 bytes.
func (a *GenericAspect) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"value":       string(a.Value),
		"contentType": a.ContentType,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (a *GenericAspect) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value       string `json:"value"`
		ContentType string `json:"contentType"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Value = []byte(raw.Value)
	a.ContentType = raw.ContentType
	return nil
}

// EncodeAspect runs the aspect's structural form through the wire-namespace
// transform and encodes it as a JSON blob.
func EncodeAspect(aspect domain.Aspect) (*GenericAspect, error) {
	wire, err := ToWire(aspect.ToObject())
	if err != nil {
		return nil, fmt.Errorf("transform aspect %s: %w", aspect.AspectName(), err)
	}
	value, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode aspect %s: %w", aspect.AspectName(), err)
	}
	return &GenericAspect{Value: value, ContentType: ContentTypeJSON}, nil
}

// DecodeObject parses a generic aspect blob back into the internal
// namespace's structural form.
func DecodeObject(value []byte) (map[string]interface{}, error) {
	var wire interface{}
	if err := json.Unmarshal(value, &wire); err != nil {
		return nil, fmt.Errorf("decode aspect value: %w", err)
	}
	internal, err := FromWire(wire)
	if err != nil {
		return nil, err
	}
	obj, ok := internal.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("aspect value is %T, want an object", internal)
	}
	return obj, nil
}
