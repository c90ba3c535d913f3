package config

import (
	"bytes"
	"os"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go templates.
// Uses {{.VAR_NAME}} syntax to avoid collision with $ in shell commands,
// which appear literally in deploy commands and hook scripts.
//
// Examples:
//   - {{.WARPMETRICS_API_KEY}} → value of WARPMETRICS_API_KEY
//   - command: "make deploy ENV=$DEPLOY_ENV" → preserved literally
//
// Missing variables expand to empty string; validation catches required
// fields that end up empty.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		// Malformed template syntax: pass the original through so the YAML
		// parser produces the clearer error.
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		// Split only on the first = to handle values containing =.
		if idx := bytes.IndexByte([]byte(env), '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}
	return buf.Bytes()
}
