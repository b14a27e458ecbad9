package config

// ConfigBackend is where non-secret maizone settings live between runs.
// On macOS that is UserDefaults under the com.maizone.app domain (via the
// `defaults` CLI); everywhere else it is a flat JSON file under
// $XDG_CONFIG_HOME/maizone. Secrets never go through a backend.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
