package schema

import _ "embed"

// ProcletV1Schema contains the JSON schema for host manifests.
//
//go:embed proclet.v1.json
var ProcletV1Schema []byte
