package types

// Logical credential names held by the vault.
const (
	CredentialVLAPIKey    = "vlApiKey"
	CredentialImageAPIKey = "imageApiKey"
)

// ConfigMethod selects who supplies model credentials.
type ConfigMethod string

const (
	// ConfigManual sends locally stored credentials as request headers.
	ConfigManual ConfigMethod = "manual"
	// ConfigManaged relies on the server's own credentials.
	ConfigManaged ConfigMethod = "managed"
)

// Preference keys stored alongside credentials.
const (
	PrefLocale       = "locale"
	PrefTheme        = "theme"
	PrefConfigMethod = "configMethod"
	PrefVLModel      = "vlModel"
	PrefImgGenModel  = "imgGenModel"
)

// Model defaults used when no preference is stored.
const (
	DefaultVLModel     = "qwen3-vl-plus"
	DefaultImgGenModel = "wan2.6-image"
)

// EnvironmentSignals are the inputs of the environment-derived secret, in derivation order.
type EnvironmentSignals struct {
	UserAgent      string `json:"user_agent"`
	Language       string `json:"language"`
	DisplayWidth   int    `json:"display_width"`
	DisplayHeight  int    `json:"display_height"`
	TimezoneOffset int    `json:"timezone_offset"` // Minutes behind UTC
}

// EncryptedCredential is the envelope persisted for one credential.
type EncryptedCredential struct {
	Version    int    `json:"v"` // Envelope format version
	Algorithm  string `json:"a"` // Cipher identifier
	Ciphertext string `json:"c"` // base64 age ciphertext
}

// Allowed values per preference; nil accepts any value.
var preferenceValues = map[string][]string{
	PrefLocale:       nil,
	PrefTheme:        {"light", "dark", "auto"},
	PrefConfigMethod: {string(ConfigManual), string(ConfigManaged)},
	PrefVLModel:      nil,
	PrefImgGenModel:  nil,
}

var preferenceDefaults = map[string]string{
	PrefConfigMethod: string(ConfigManaged),
	PrefVLModel:      DefaultVLModel,
	PrefImgGenModel:  DefaultImgGenModel,
}

// IsPreference reports whether key names a known preference.
func IsPreference(key string) bool {
	_, ok := preferenceValues[key]
	return ok
}

// ValidPreference reports whether value is acceptable for key.
func ValidPreference(key, value string) bool {
	allowed, ok := preferenceValues[key]
	if !ok {
		return false
	}
	if allowed == nil {
		return true
	}
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}

// PreferenceDefaults returns the values used for unset preferences.
func PreferenceDefaults() map[string]string {
	defaults := make(map[string]string, len(preferenceDefaults))
	for k, v := range preferenceDefaults {
		defaults[k] = v
	}
	return defaults
}
