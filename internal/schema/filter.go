package schema

import "strings"

// ProviderFilter says which providers an option or example applies to.
// It is one of AllProviders, OnlyProviders or AllExcept.
type ProviderFilter interface {
	isProviderFilter()
}

// AllProviders applies regardless of the selected provider.
type AllProviders struct{}

// OnlyProviders applies only when the selected provider is listed.
type OnlyProviders struct {
	Names map[string]struct{}
}

// AllExcept applies unless the selected provider is listed.
type AllExcept struct {
	Names map[string]struct{}
}

func (AllProviders) isProviderFilter()  {}
func (OnlyProviders) isProviderFilter() {}
func (AllExcept) isProviderFilter()     {}

// ParseProviderFilter converts the backend applicability string into a filter.
//
//	""            -> AllProviders
//	"AWS,Minio"   -> OnlyProviders{AWS, Minio}
//	"!AWS,Minio"  -> AllExcept{AWS, Minio}
func ParseProviderFilter(raw string) ProviderFilter {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AllProviders{}
	}
	if rest, negated := strings.CutPrefix(raw, "!"); negated {
		return AllExcept{Names: splitNames(rest)}
	}
	return OnlyProviders{Names: splitNames(raw)}
}

func splitNames(list string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names[name] = struct{}{}
		}
	}
	return names
}

// Applies evaluates a filter against the selected provider. An empty provider
// means none is selected yet: generic (AllProviders, AllExcept) entries apply,
// provider-specific (OnlyProviders) entries do not.
func Applies(f ProviderFilter, provider string) bool {
	switch f := f.(type) {
	case AllProviders:
		return true
	case OnlyProviders:
		if provider == "" {
			return false
		}
		_, ok := f.Names[provider]
		return ok
	case AllExcept:
		if provider == "" {
			return true
		}
		_, excluded := f.Names[provider]
		return !excluded
	default:
		return true
	}
}
