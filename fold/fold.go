// Package fold splits sample indices into training and validation sets for
// cross-validation.
package fold

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var ErrSplitSize = errors.New("fold: split sizes do not sum to the number of samples")

// Fold is one training/validation split. Each entry is a row index into the
// sample matrix.
type Fold struct {
	Train    []int
	Validate []int
}

// Partition randomly partitions nData indices into nFolds groups for k-fold
// cross-validation. testing[i] is the i-th group and training[i] is all of
// the other indices. The first nData%nFolds groups hold one more index than
// the rest. If nFolds exceeds nData it is reduced to nData.
func Partition(nData, nFolds int, rnd *rand.Rand) (training, testing [][]int) {
	if nFolds < 1 {
		panic("fold: non-positive number of folds")
	}
	if nData < 0 {
		panic("fold: negative amount of data")
	}
	if nFolds > nData {
		nFolds = nData
	}
	if nFolds == 0 {
		return nil, nil
	}

	// Get a random permutation of the data samples
	perm := rnd.Perm(nData)

	training = make([][]int, nFolds)
	testing = make([][]int, nFolds)

	nSampPerFold := nData / nFolds
	remainder := nData % nFolds

	idx := 0
	for i := 0; i < nFolds; i++ {
		nTestElems := nSampPerFold
		if i < remainder {
			nTestElems += 1
		}
		testing[i] = make([]int, nTestElems)
		copy(testing[i], perm[idx:idx+nTestElems])

		training[i] = make([]int, nData-nTestElems)
		copy(training[i], perm[:idx])
		copy(training[i][idx:], perm[idx+nTestElems:])

		idx += nTestElems
	}
	if idx != nData {
		panic("bad logic")
	}
	return training, testing
}

// KFold returns the k folds of a random k-fold split of n samples. If k
// exceeds n it is reduced to n. With k = 1 there is nothing to hold out, and
// the single fold trains and validates on every sample.
func KFold(n, k int, rnd *rand.Rand) []Fold {
	if k > n && n > 0 {
		k = n
	}
	if k == 1 {
		all := rnd.Perm(n)
		return []Fold{{Train: all, Validate: all}}
	}
	training, testing := Partition(n, k, rnd)
	folds := make([]Fold, len(training))
	for i := range folds {
		folds[i].Train = training[i]
		folds[i].Validate = testing[i]
	}
	return folds
}

// TrainValidation randomly splits n samples into nTrain training and
// nValidate validation indices.
func TrainValidation(n, nTrain, nValidate int, rnd *rand.Rand) (Fold, error) {
	if nTrain < 0 || nValidate < 0 || nTrain+nValidate != n {
		return Fold{}, fmt.Errorf("%d training and %d validation for %d samples: %w", nTrain, nValidate, n, ErrSplitSize)
	}
	perm := rnd.Perm(n)
	return Fold{
		Train:    perm[:nTrain:nTrain],
		Validate: perm[nTrain:],
	}, nil
}
