// Package trace provides deterministic encodings of harness data.
//
// MarshalCanonical produces RFC 8785 style canonical JSON (sorted keys by
// UTF-16 code units, NFC-normalised strings, no HTML escaping, no floats,
// no null). Golden command traces and stored descriptors are written with
// it so that byte comparison is meaningful across runs and machines.
//
// Fingerprint hashes a canonical value with a domain prefix. Outcomes
// stored in the history database carry the fingerprint of the group
// descriptor they ran against, so a changed catalog is visible in history.
package trace
