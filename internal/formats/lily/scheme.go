package lily

import (
	"strconv"
	"strings"
)

// parseSchemeValue classifies the datum text captured after '#'. The
// classification is shallow: literals get typed values, everything with
// structure stays verbatim so the serializer reproduces it exactly.
func parseSchemeValue(raw string) SchemeValue {
	switch {
	case raw == "":
		return &SchemeOpaque{Raw: raw}

	case raw == "#t":
		return &SchemeBool{Value: true}
	case raw == "#f":
		return &SchemeBool{Value: false}

	case raw[0] == '{':
		return &SchemeEmbedded{Raw: raw}

	case strings.HasPrefix(raw, "'("):
		return &SchemeList{Raw: raw}
	case raw[0] == '\'':
		return &SchemeSymbol{Name: raw[1:]}

	case raw[0] == '(':
		return &SchemeList{Raw: raw}

	case raw[0] == '"':
		return &SchemeString{Raw: raw}
	}

	if n, err := strconv.Atoi(raw); err == nil {
		return &SchemeInt{Value: n}
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return &SchemeFloat{Value: f, Raw: raw}
	}
	if isSchemeIdent(raw) {
		return &SchemeIdent{Name: raw}
	}
	return &SchemeOpaque{Raw: raw}
}

// schemeRaw renders a value back to the datum text that follows '#' in
// source form. For verbatim variants this is the captured text itself.
func schemeRaw(v SchemeValue) string {
	switch s := v.(type) {
	case *SchemeBool:
		if s.Value {
			return "#t"
		}
		return "#f"
	case *SchemeInt:
		return strconv.Itoa(s.Value)
	case *SchemeFloat:
		return s.Raw
	case *SchemeString:
		return s.Raw
	case *SchemeSymbol:
		return "'" + s.Name
	case *SchemeIdent:
		return s.Name
	case *SchemeList:
		return s.Raw
	case *SchemeEmbedded:
		return s.Raw
	case *SchemeOpaque:
		return s.Raw
	}
	return ""
}

func isSchemeIdent(raw string) bool {
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if isAlnum(c) || c == '-' || c == '_' || c == '!' || c == '?' || c == ':' {
			continue
		}
		return false
	}
	return !isDigit(raw[0])
}
