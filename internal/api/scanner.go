package api

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dutchcoders/go-clamd"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrMaliciousFile is returned when the scanner flags an upload.
var ErrMaliciousFile = errors.New("malicious file detected")

// VirusScanner 在上传到对象存储之前扫描文件内容。
type VirusScanner interface {
	Scan(r io.Reader) error
}

const (
	scanBreakerFailures = 3
	scanBreakerTimeout  = 30 * time.Second
)

// ClamdScanner 通过 clamd 的 INSTREAM 扫描。clamd 连续不可用时熔断，上传直接失败。
type ClamdScanner struct {
	scan    func(r io.Reader) error
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewClamdScanner returns nil when addr is empty, which disables scanning.
func NewClamdScanner(addr string) *ClamdScanner {
	if addr == "" {
		return nil
	}
	client := clamd.NewClamd(addr)
	return newBreakerScanner(func(r io.Reader) error { return scanStream(client, r) })
}

func newBreakerScanner(scan func(r io.Reader) error) *ClamdScanner {
	return &ClamdScanner{
		scan: scan,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "clamd",
			Timeout: scanBreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= scanBreakerFailures
			},
			// 检出病毒是正常结果，不算 clamd 故障
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrMaliciousFile)
			},
		}),
	}
}

func (s *ClamdScanner) Scan(r io.Reader) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.scan(r)
	})
	return err
}

func scanStream(client *clamd.Clamd, r io.Reader) error {
	abortChan := make(chan bool)
	defer close(abortChan)

	results, err := client.ScanStream(r, abortChan)
	if err != nil {
		return fmt.Errorf("clamd scan: %w", err)
	}

	var scanErr error
	for result := range results {
		switch result.Status {
		case clamd.RES_OK:
		case clamd.RES_FOUND:
			scanErr = fmt.Errorf("%w: %s", ErrMaliciousFile, result.Description)
		default:
			if scanErr == nil {
				scanErr = fmt.Errorf("clamd scan status %s: %s", result.Status, result.Description)
			}
		}
	}
	return scanErr
}
