package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrExpectedEventsLoad marks a required-events file that could not be read
// or is not a JSON array of strings.
var ErrExpectedEventsLoad = errors.New("expected-events load failed")

// LoadRequiredEvents reads the required event names from a JSON file.
// The file must hold a JSON array of strings.
func LoadRequiredEvents(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExpectedEventsLoad, err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%w: expected-events must be a JSON array of strings: %v", ErrExpectedEventsLoad, err)
	}
	if names == nil {
		return nil, fmt.Errorf("%w: expected-events must be a JSON array of strings", ErrExpectedEventsLoad)
	}

	return names, nil
}
