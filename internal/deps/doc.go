// Package deps checks that the external binaries scenevibe shells out to are
// installed.
package deps
