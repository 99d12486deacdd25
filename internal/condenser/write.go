package condenser

import (
	"os"

	"github.com/stratabisim/stratabisim/internal/wire"
	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
)

func writeSummaryGraph(path string, edges [][3]int64) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create condensed summary graph file", err)
	}
	defer f.Close()
	w := wire.NewWriter(f)
	for _, e := range edges {
		if err := w.WriteBlockOrSingleton(e[0]); err != nil {
			return err
		}
		if err := w.WritePredicate(e[1]); err != nil {
			return err
		}
		if err := w.WriteBlockOrSingleton(e[2]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeIntervals(path string, intervals map[int64]interval) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create intervals file", err)
	}
	defer f.Close()
	w := wire.NewWriter(f)
	for node, iv := range intervals {
		if iv.start > iv.end {
			return apperrors.Wrap(apperrors.CodeInvariant, "interval inversion while writing intervals file", nil)
		}
		if err := w.WriteBlockOrSingleton(node); err != nil {
			return err
		}
		if err := w.WriteKType(iv.start); err != nil {
			return err
		}
		if err := w.WriteKType(iv.end); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeLocalGlobalMap(path string, entries []localGlobalEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create local-to-global map file", err)
	}
	defer f.Close()
	w := wire.NewWriter(f)
	for _, e := range entries {
		if err := w.WriteKType(e.level); err != nil {
			return err
		}
		if err := w.WriteBlockOrSingleton(e.local); err != nil {
			return err
		}
		if err := w.WriteBlockOrSingleton(e.global); err != nil {
			return err
		}
	}
	return w.Flush()
}

// singletonBirth records the singletons a single dissolving parent produced
// at one level transition.
type singletonBirth struct {
	Parent     int64
	Singletons []int64
}

func writeSingletonMapping(path string, births []singletonBirth) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "create singleton-mapping file", err)
	}
	defer f.Close()
	w := wire.NewWriter(f)
	for _, b := range births {
		if err := w.WriteBlock(b.Parent); err != nil {
			return err
		}
		if err := w.WriteBlockOrSingleton(int64(len(b.Singletons))); err != nil {
			return err
		}
		for _, v := range b.Singletons {
			tag := -(v + 1)
			if err := w.WriteBlockOrSingleton(tag); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}
