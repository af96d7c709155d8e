package validation

import (
	"fmt"
	"reflect"
	"strings"

	"3tcapital/ms_cartaporte_core/internal/application/cfdi"
	"3tcapital/ms_cartaporte_core/internal/core/cartaporte"
)

// checkText reports every string value of doc that cannot be written into
// an XML 1.0 document. Field paths follow the JSON names of the record.
func checkText(doc *cartaporte.Document, f *findings) {
	walkStrings(reflect.ValueOf(doc).Elem(), "", func(path, value string) {
		if err := cfdi.CheckText(value); err != nil {
			f.fail(path, value, CodeInvalidCharacter,
				"El valor contiene caracteres de control o texto mal codificado que no pueden incluirse en el CFDI",
				"Elimine los caracteres no imprimibles y capture el texto nuevamente")
		}
	})
}

func walkStrings(v reflect.Value, path string, visit func(path, value string)) {
	switch v.Kind() {
	case reflect.String:
		visit(path, v.String())
	case reflect.Pointer:
		if !v.IsNil() {
			walkStrings(v.Elem(), path, visit)
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			walkStrings(v.Index(i), fmt.Sprintf("%s[%d]", path, i), visit)
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				continue
			}
			if path != "" {
				name = path + "." + name
			}
			walkStrings(v.Field(i), name, visit)
		}
	}
}
