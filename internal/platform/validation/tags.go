package validation

import (
	"reflect"
	"strings"
)

// jsonName reports struct fields by their JSON name in validation errors.
func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
