package protocol

import (
	"github.com/bugVanisher/berrycam/common/config"
	"github.com/bugVanisher/berrycam/common/errs"
)

func UnsupportedProtocol(p config.Protocol) error {
	return errs.Wrapf(errs.ErrUnsupportedProtocol, "protocol: %s", p)
}
