// Package tlsroots loads the TLS material of the exposition endpoint.
//
// KeyPair holds the serving certificate and swaps it in place on Reload,
// so a renewed certificate is picked up without restarting the listener.
// Pool collects CA certificates, either to verify scraper client
// certificates (mutual TLS) or, on the CLI side, to trust a private CA.
package tlsroots
