// Пакет httpclient — HTTP-клиенты с доверием к кастомному CA.
// Используется для Bot API (MI_TG_CA_CERT_PATH) и JWKS IdP (MI_JWT_CA_CERT_PATH).
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// New создаёт HTTP-клиент с таймаутом.
// caCertPath — путь к CA-сертификату для TLS (пустая строка — системный пул).
func New(caCertPath string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		// Клиент обращается к одному хосту: пул idle-соединений переиспользуется
		MaxIdleConnsPerHost: 10,
	}

	if caCertPath != "" {
		tlsConfig, err := TLSConfig(caCertPath)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// TLSConfig создаёт TLS-конфигурацию: системный пул плюс CA из файла.
func TLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("файл %s не содержит PEM-сертификатов", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}
