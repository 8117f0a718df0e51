package deferred

import _ "embed"

// ClientScript is the client-side polling/patching program served at
// GET /__pantolingo/deferred.js (§4.10, §6).
//
//go:embed assets/deferred.js
var ClientScript string
