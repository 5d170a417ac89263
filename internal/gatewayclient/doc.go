// Package gatewayclient calls a mailgateway server.
//
// Every request is retried with exponential backoff when the transport
// fails or the gateway answers with a 4xx or 5xx status, up to a fixed
// number of retries. The retry policy does not distinguish methods, so a
// send that reached the provider but whose response was lost may be sent
// again. A successful extraction that found nothing (JSON false) is a
// normal 200 and is never retried.
//
// When retries are exhausted the last gateway response is returned as
// *APIError.
package gatewayclient
