// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origFlags   ldFlags
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origFlags = *buildFlags

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildFlags = origFlags

	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2026-10-01", "abcdef123", "v0.3.0", "BuildName is required"},
		{"Missing BuildTime", "audioinput", "", "abcdef123", "v0.3.0", "BuildTime is required"},
		{"Missing BuildCommit", "audioinput", "2026-10-01", "", "v0.3.0", "BuildCommit is required"},
		{"Missing BuildVersion", "audioinput", "2026-10-01", "abcdef123", "", "BuildVersion is required"},
		{"Success Case", "audioinput", "2026-10-01", "abcdef123", "v0.3.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildFlags = &ldFlags{Name: "audioinput", Time: "unknown", Commit: "unknown", Version: "unknown"}

			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil || err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				if buildFlags.Version != "unknown" {
					t.Errorf("defaults overwritten on error: %+v", buildFlags)
				}
				return
			}

			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}
			if *buildFlags != (ldFlags{Name: tt.buildName, Time: tt.buildTime, Commit: tt.buildCommit, Version: tt.buildVer}) {
				t.Errorf("buildFlags = %+v", buildFlags)
			}
		})
	}
}

func TestBuildFlagsString(t *testing.T) {
	f := &ldFlags{Name: "audioinput", Time: "2026-10-01", Commit: "abc", Version: "v0.3.0"}
	want := "audioinput v0.3.0 (commit abc, built 2026-10-01)"
	if got := f.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
