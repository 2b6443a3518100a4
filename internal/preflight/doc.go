// Package preflight provides readiness checks for the directories, binaries,
// and inference API that scenevibe depends on.
//
// The server runs RunAll at startup and logs failures; the CLI "doctor"
// command renders every result along with CheckSystemDeps.
package preflight
