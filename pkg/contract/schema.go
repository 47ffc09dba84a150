package contract

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

var replyTypes = map[string]reflect.Type{
	VersionScene:     reflect.TypeOf(SceneReply{}),
	VersionEvaluator: reflect.TypeOf(EvaluatorReply{}),
}

// Schema returns the indented JSON schema of a contract's reply shape.
func Schema(version string) ([]byte, error) {
	c, err := Lookup(version)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(reflectSchema(replyTypes[c.Version()], c.Version()), "", "  ")
}

func reflectSchema(t reflect.Type, version string) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.ReflectFromType(t)
	schema.Version = ""
	schema.Title = "Narrator reply " + version
	return schema
}

func instructions(reply any, example string) string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. ")
	b.WriteString("Do not wrap it in markdown and do not add commentary before or after it.\n")
	b.WriteString("stateChange is sparse: include only the fields that change this turn. ")
	b.WriteString("health and standing are relative changes, not totals. ")
	b.WriteString("Each inventory entry is \"+item\" to add or \"-item\" to remove.\n\n")

	t := reflect.TypeOf(reply)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	data, err := json.MarshalIndent(reflectSchema(t, ""), "", "  ")
	if err == nil {
		fmt.Fprintf(&b, "JSON schema:\n%s\n\n", data)
	}
	fmt.Fprintf(&b, "Example:\n%s\n", example)
	return b.String()
}
