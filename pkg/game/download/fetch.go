package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cenkalti/backoff/v5"

	"limeal.fr/gamepipe/pkg/launcherr"
	"limeal.fr/gamepipe/pkg/utils"
)

// FetchAndVerify makes sure dest holds the bytes of url hashing to sha1.
//
// An existing file with the expected hash is kept without any fetch.
// Otherwise url is fetched up to maxTries times; transport failures and
// hash mismatches both consume a try. The bytes are written to a unique
// temporary file renamed over dest, then hashed once more on disk. Once
// the tries are exhausted a *launcherr.ChecksumError is returned, unless the
// last try failed in transport, which is reported as its
// *launcherr.FetchError.
//
// An empty sha1 means the source publishes no hash: the file is fetched
// only when missing and is not verified.
func (d *Downloader) FetchAndVerify(ctx context.Context, url, dest, sha1 string, maxTries int) error {
	_, err := d.fetchAndVerify(ctx, pipelineDirect, url, dest, sha1, maxTries)
	return err
}

// fetchAndVerify returns the number of bytes written, zero on a cache hit.
func (d *Downloader) fetchAndVerify(ctx context.Context, pipeline, url, dest, sha1 string, maxTries int) (int64, error) {
	if maxTries < 1 {
		return 0, launcherr.InvalidInputf("max tries must be at least 1, got %d", maxTries)
	}

	hit, err := cached(dest, sha1)
	if err != nil {
		return 0, err
	}
	if hit {
		d.metrics.cacheHitTotal.WithLabelValues(pipeline).Inc()
		return 0, nil
	}

	b := d.newBackOff()
	b.Reset()

	var (
		lastErr       error
		lastTransport bool
	)
	for try := 1; try <= maxTries; try++ {
		if try > 1 {
			d.metrics.retryTotal.WithLabelValues(pipeline).Inc()
			delay := b.NextBackOff()
			if delay == backoff.Stop {
				delay = 0
			}
			d.log.Debug("retrying download", "url", url, "try", try, "delay", delay, "error", lastErr)
			if err := sleepCtx(ctx, delay); err != nil {
				return 0, launcherr.Task("download "+url, err)
			}
		} else if err := ctx.Err(); err != nil {
			return 0, launcherr.Task("download "+url, err)
		}

		d.metrics.fetchTotal.WithLabelValues(pipeline).Inc()
		data, err := d.fetcher.Fetch(ctx, url)
		if err != nil {
			lastErr, lastTransport = launcherr.Fetch(url, err), true
			continue
		}

		if sha1 != "" {
			if got := utils.BytesSHA1(data); !utils.SameHash(got, sha1) {
				lastErr, lastTransport = fmt.Errorf("fetched bytes hash to %s", got), false
				continue
			}
		}

		if err := utils.WriteFileAtomic(dest, data, 0o644); err != nil {
			d.metrics.failureTotal.WithLabelValues(pipeline).Inc()
			return 0, launcherr.IO(dest, err)
		}

		if sha1 != "" {
			got, err := utils.FileSHA1(dest)
			if err != nil {
				d.metrics.failureTotal.WithLabelValues(pipeline).Inc()
				return 0, launcherr.IO(dest, err)
			}
			if !utils.SameHash(got, sha1) {
				lastErr, lastTransport = fmt.Errorf("written file hashes to %s", got), false
				continue
			}
		}

		d.metrics.bytesTotal.WithLabelValues(pipeline).Add(float64(len(data)))
		return int64(len(data)), nil
	}

	d.metrics.failureTotal.WithLabelValues(pipeline).Inc()
	if sha1 == "" || lastTransport {
		return 0, lastErr
	}
	return 0, &launcherr.ChecksumError{URL: url, Hash: sha1, Tries: maxTries, Err: lastErr}
}

func cached(dest, sha1 string) (bool, error) {
	if sha1 != "" {
		return utils.HasFileWithSHA1(dest, sha1), nil
	}
	st, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, launcherr.IO(dest, err)
	}
	return st.Mode().IsRegular(), nil
}
