package jsonrpc

import (
	"bytes"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

var prettyOptions = &pretty.Options{
	Indent:   "  ",
	SortKeys: false,
}

// PrettyPrint indents text when it is valid JSON and returns it unchanged
// otherwise.
func PrettyPrint(text string) string {
	if !gjson.Valid(text) {
		return text
	}
	out := pretty.PrettyOptions([]byte(text), prettyOptions)
	return string(bytes.TrimRight(out, "\n"))
}

// IsJSON reports whether text is a JSON object or array.
func IsJSON(text string) bool {
	if !gjson.Valid(text) {
		return false
	}
	r := gjson.Parse(text)
	return r.IsObject() || r.IsArray()
}
