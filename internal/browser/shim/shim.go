// internal/browser/shim/shim.go
package shim

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagechain/api/schemas"
)

// ConfigPlaceholder is replaced in the wrapper template with the JSON configuration.
const ConfigPlaceholder = "/*{{PAGECHAIN_CLICK_CONFIG}}*/"

//go:embed clickwrapper.js
var clickWrapperTemplate string

// wrapperConfig is the object injected into the template.
type wrapperConfig struct {
	Binding    string `json:"binding"`
	StrictFlag string `json:"strictFlag"`
}

// BuildClickWrapper injects the binding and strict flag names into template.
func BuildClickWrapper(template, binding, strictFlag string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("template is empty")
	}
	if !strings.Contains(template, ConfigPlaceholder) {
		return "", fmt.Errorf("template does not contain the required placeholder: %s", ConfigPlaceholder)
	}
	if binding == "" || strictFlag == "" {
		return "", fmt.Errorf("binding and strict flag names are required")
	}

	cfgJSON, err := json.Marshal(wrapperConfig{Binding: binding, StrictFlag: strictFlag})
	if err != nil {
		return "", fmt.Errorf("failed to encode wrapper config: %w", err)
	}
	return strings.Replace(template, ConfigPlaceholder, string(cfgJSON), 1), nil
}

// ClickWrapperScript returns the embedded in-page click wrapper configured with the standard
// binding and strict flag names. Page backends install it on every new document.
func ClickWrapperScript() (string, error) {
	return BuildClickWrapper(clickWrapperTemplate, schemas.ClickEventBinding, schemas.StrictClicksFlag)
}
