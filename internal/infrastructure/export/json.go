package export

import (
	"encoding/json"
	"fmt"
)

type JSONRenderer struct{}

func (JSONRenderer) ContentType() string { return "application/json" }

func (JSONRenderer) Render(report Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return append(data, '\n'), nil
}
