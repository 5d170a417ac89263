// Package extract pulls verification codes, links and other fragments out
// of a message body.
//
// A Query carries a regular expression, a delimiter pair, or both. The
// pattern is tried first and yields the first full match; when it is absent
// or does not match, the delimiter pair "A,B" yields every substring found
// between A and the next B. If neither produces anything the result is Miss,
// which encodes as JSON false. Malformed queries also produce Miss; they are
// logged rather than returned as errors.
package extract
