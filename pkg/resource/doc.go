// Package resource evaluates permission levels against stored documents.
// An endpoint declares an AccessConfig naming the resource, where its id
// arrives in the request payload, and which permission levels grant access.
// The controller loads the document and evaluates the configured levels in
// order of specificity; the first satisfied level grants access.
package resource
