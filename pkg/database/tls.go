package database

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
)

// TLSSettings points at the PEM files used for mutual TLS.
type TLSSettings struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// Enabled reports whether any TLS file is configured.
func (s *TLSSettings) Enabled() bool {
	return s != nil && (s.CertFile != "" || s.KeyFile != "" || s.CAFile != "")
}

// TLSConfig creates a TLS config for connecting over mTLS.
//
// Example usage:
//
//	cfg, err := TLSConfig(TLSSettings{
//	    CertFile: "client.crt",
//	    KeyFile:  "client.key",
//	    CAFile:   "ca.crt",
//	})
//	if err != nil {
//	    return err
//	}
func TLSConfig(s TLSSettings) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load certfile/keyfile")
	}

	caCert, err := os.ReadFile(s.CAFile)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load CA file")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.Errorf("no certificates found in CA file: %s", s.CAFile)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
