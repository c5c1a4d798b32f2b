package backend

import (
	"fmt"

	"cuentas/internal/config"
)

// FromAppConfig converts the application config to mirror config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	mirrorType := MirrorType(appConfig.MirrorBackend)
	if !mirrorType.IsValid() {
		return Config{}, fmt.Errorf("invalid mirror type in config: %s", appConfig.MirrorBackend)
	}

	return Config{
		Type: mirrorType,

		// Google Sheets configuration
		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleSheetName:       appConfig.GoogleSheetName,
		GoogleOAuthClientFile: appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenFile:  appConfig.GoogleOAuthTokenFile,
		GoogleOAuthClientJSON: appConfig.GoogleOAuthClientJSON,
		GoogleOAuthTokenJSON:  appConfig.GoogleOAuthTokenJSON,
	}, nil
}

// Validate validates the mirror configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid mirror type: %s", c.Type)
	}

	switch c.Type {
	case SheetsMirror:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for the sheets mirror")
		}

		// Must have either client file or JSON
		hasClientFile := c.GoogleOAuthClientFile != ""
		hasClientJSON := c.GoogleOAuthClientJSON != ""
		if !hasClientFile && !hasClientJSON {
			return fmt.Errorf("either GoogleOAuthClientFile or GoogleOAuthClientJSON must be provided for the sheets mirror")
		}

		// Must have either token file or JSON
		hasTokenFile := c.GoogleOAuthTokenFile != ""
		hasTokenJSON := c.GoogleOAuthTokenJSON != ""
		if !hasTokenFile && !hasTokenJSON {
			return fmt.Errorf("either GoogleOAuthTokenFile or GoogleOAuthTokenJSON must be provided for the sheets mirror")
		}

	case MemoryMirror, NoMirror:
		// Nothing extra to validate
	}

	return nil
}

// GetMirrorTypes returns all valid mirror types
func GetMirrorTypes() []MirrorType {
	return []MirrorType{MemoryMirror, SheetsMirror, NoMirror}
}

// GetMirrorTypeStrings returns all valid mirror type strings
func GetMirrorTypeStrings() []string {
	types := GetMirrorTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
