package transport

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/talos-perf/talos/internal/common/taloserrors"
)

// CheckLinks makes sure results could be delivered to each of the given destinations without contacting them:
// file:// destinations must be in an existing directory and http(s):// destinations must name a host.
// All bad destinations are reported in a single ErrConfiguration.
func CheckLinks(destinations ...string) error {
	var invalid []string
	for _, destination := range destinations {
		if err := checkLink(destination); err != nil {
			log.WithError(err).WithField("url", destination).Error("invalid results destination")
			invalid = append(invalid, fmt.Sprintf("%s (%s)", destination, err))
		}
	}
	if len(invalid) > 0 {
		return errors.WithStack(&taloserrors.ErrConfiguration{
			Subsystem: "transport",
			Reason:    "invalid destinations",
			Keys:      invalid,
		})
	}
	return nil
}

func checkLink(destination string) error {
	u, err := url.Parse(destination)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "file":
		path := FilePath(u)
		if path == "" {
			return errors.New("no path")
		}
		dir := filepath.Dir(path)
		info, err := os.Stat(dir)
		if err != nil {
			return errors.Errorf("directory %s does not exist", dir)
		}
		if !info.IsDir() {
			return errors.Errorf("%s is not a directory", dir)
		}
		return nil
	case "http", "https":
		if u.Host == "" {
			return errors.New("no host")
		}
		return nil
	default:
		return errors.New("only http://, https://, and file:// supported")
	}
}
