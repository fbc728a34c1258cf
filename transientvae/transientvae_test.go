package transientvae_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/sensorlab/transientvae/transientvae"
)

// buildCorpus lays out the standard split tree with 2-channel, length-8
// transients and a shared statistics table.
func buildCorpus(t *testing.T, perSplit int) (root, statsPath string) {
	t.Helper()
	root = t.TempDir()
	statsPath = filepath.Join(root, "normals.npy")
	writeNpy(t, statsPath, mat.NewDense(2, 2, []float64{
		0, 1,
		0, 2,
	}))

	splits := []string{
		filepath.Join("train", "train"),
		filepath.Join("train", "val"),
		"test",
	}
	for _, split := range splits {
		for i := 0; i < perSplit; i++ {
			v := float64(i+1) / float64(perSplit)
			writeNpy(t,
				filepath.Join(root, split, "pulse", fmt.Sprintf("s%d.npy", i)),
				mat.NewDense(2, 8, []float64{
					v, -v, v, -v, v, -v, v, -v,
					2 * v, 0, 2 * v, 0, 2 * v, 0, 2 * v, 0,
				}))
		}
	}
	return root, statsPath
}

func writeNpy(t *testing.T, path string, m *mat.Dense) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, npyio.Write(f, m))
}

// TestTrainingStepPipeline walks the full contract the external training
// loop consumes: batched iteration, forward, loss with diagnostics, and
// parameter write-back.
func TestTrainingStepPipeline(t *testing.T) {
	root, statsPath := buildCorpus(t, 6)

	splits, err := transientvae.LoadSplits(root, statsPath)
	require.NoError(t, err)
	require.Equal(t, 6, splits.Train.Len())

	model, err := transientvae.NewVAE1DFromConfig(transientvae.Config{
		Size:     8,
		Channels: 2,
		Latent:   5,
		Depth:    8,
		Seed:     3,
	})
	require.NoError(t, err)

	elbo := transientvae.NewELBO(1)
	loader, err := transientvae.NewLoader(splits.Train, 3,
		transientvae.WithShuffle(1), transientvae.WithWorkers(2))
	require.NoError(t, err)

	batches := 0
	for {
		batch, err := loader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		batches++

		recon, mu, logvar, err := model.Forward(batch.Data, batch.Size)
		require.NoError(t, err)
		require.Len(t, recon, len(batch.Data))

		loss, diag, err := elbo.Forward(recon, batch.Data, mu, logvar, batch.Size, true)
		require.NoError(t, err)
		require.Len(t, loss, 1)
		require.Greater(t, loss[0], 0.0)
		require.GreaterOrEqual(t, diag.KL[0], 0.0)
		require.LessOrEqual(t, diag.LogP[0], 0.0)

		// the optimizer's side of the contract
		params := model.Params()
		model.SetParams(params)
	}
	require.Equal(t, 2, batches)
}

// TestErrorSurface checks the re-exported sentinels match the internal ones
// callers will see from wrapped errors.
func TestErrorSurface(t *testing.T) {
	_, err := transientvae.NewVAE1D(12, 1, 10)
	require.ErrorIs(t, err, transientvae.ErrBadSize)

	model, err := transientvae.NewVAE1D(8, 1, 10)
	require.NoError(t, err)
	_, _, err = model.Encode(make([]float64, 3), 1)
	require.ErrorIs(t, err, transientvae.ErrShapeMismatch)
}

// TestSharedStatsAcrossSplits checks all splits normalize with the same
// table: the same file content yields the same tensor from any split.
func TestSharedStatsAcrossSplits(t *testing.T) {
	root, statsPath := buildCorpus(t, 2)
	splits, err := transientvae.LoadSplits(root, statsPath)
	require.NoError(t, err)

	trainSample, _, err := splits.Train.Get(0)
	require.NoError(t, err)
	testSample, _, err := splits.Test.Get(0)
	require.NoError(t, err)
	require.Equal(t, trainSample, testSample)
}
