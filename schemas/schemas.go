// Package schemas carries the JSON schema documents that back configuration
// validation. The schemas are embedded so validation works without any files
// installed next to the binary.
package schemas

import _ "embed"

//go:embed monitor_v1.json
var MonitorV1 []byte
