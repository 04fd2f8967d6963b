// Package envcache provides the per-node isolated execution environments
// and their persistence across runs. Each node identity owns one directory
// under the cache root, tagged with a fingerprint of the dependency spec
// last applied to it: an unchanged spec reuses the directory, a changed
// one invalidates and rebuilds it.
//
// The cache only owns the directories and the reuse policy. Provisioning a
// toolchain into an environment is the step body's business, through its
// run context.
package envcache
