package llm

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"

	"github.com/joseph-ayodele/autofill/constants"
	"github.com/joseph-ayodele/autofill/internal/fields"
)

// Reconcile maps raw model output onto the requested fields. It never fails: output that is
// not a non-empty JSON object yields StatusInvalid with every field null.
func Reconcile(raw string, specs []fields.Spec) Result {
	values := make(map[string]*string, len(specs))
	for _, s := range specs {
		values[s.Name] = nil
	}

	obj, ok := parseObject(StripCodeFences(raw))
	if !ok || len(obj) == 0 {
		return Result{Status: constants.StatusInvalid, Values: values}
	}

	requested := make(map[string]struct{}, len(specs))
	var dropped []string
	missing := 0
	for _, s := range specs {
		requested[s.Name] = struct{}{}
		v, present := obj[s.Name]
		if !present {
			missing++
			continue
		}
		str, ok := scalarString(v)
		if !ok {
			if v != nil {
				dropped = append(dropped, s.Name)
			}
			missing++
			continue
		}
		values[s.Name] = &str
	}
	for k := range obj {
		if _, ok := requested[k]; !ok {
			dropped = append(dropped, k)
		}
	}
	sort.Strings(dropped)

	status := constants.StatusSuccess
	if missing > 0 {
		status = constants.StatusPartial
	}
	return Result{Status: status, Values: values, Dropped: dropped}
}

func parseObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}
