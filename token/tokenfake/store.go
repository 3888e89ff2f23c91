package tokenfake

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jrsteele09/osonify-auth/authmodel"
	"github.com/jrsteele09/osonify-auth/token"
	"github.com/stretchr/testify/assert"
)

// AssertAtomicWrites runs concurrent writers of A<n>/R<n> pairs against s
// while readers check that they never see one token from one write and the
// other from a different write.
func AssertAtomicWrites(t *testing.T, s token.Store) {
	t.Helper()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				n := fmt.Sprintf("%d-%d", w, i)
				assert.NoError(t, s.Set(authmodel.TokenPair{AccessToken: "A" + n, RefreshToken: "R" + n}))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				pair, err := s.Get()
				if !assert.NoError(t, err) || pair == nil {
					continue
				}
				assert.Equal(t, pair.AccessToken[1:], pair.RefreshToken[1:])
			}
		}()
	}
	wg.Wait()
}
