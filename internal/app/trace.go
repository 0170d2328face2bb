package app

import (
	"github.com/dshills/appevent/internal/config"
	"github.com/dshills/appevent/internal/event"
)

// ApplyTrace sets the log and profile toggles of every type in t from tc
// and returns how many toggles changed. A nil list restores each type's
// registration flags; a non-nil list enables exactly the types it names.
// TraceConfig.Assertions is applied to the table's registry.
func ApplyTrace(t *event.Table, tc config.TraceConfig) int {
	changed := 0
	for _, typ := range t.Types() {
		log := typ.Flags().Has(event.FlagLogEnabled)
		if tc.Log != nil {
			log = tc.Logs(typ.Name())
		}
		if typ.LogEnabled() != log {
			typ.SetLogEnabled(log)
			changed++
		}

		profile := typ.Flags().Has(event.FlagProfileEnabled)
		if tc.Profile != nil {
			profile = tc.Profiles(typ.Name())
		}
		before := typ.ProfileEnabled()
		typ.SetProfileEnabled(profile)
		if typ.ProfileEnabled() != before {
			changed++
		}
	}
	t.Registry().SetAssertions(tc.Assertions)
	return changed
}
