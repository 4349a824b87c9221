package payments

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sozdatel3/server-for-arcanBot/internal/common"
)

type fakeCity struct {
	userID  int64
	applied bool
	err     error
	calls   int
}

func (f *fakeCity) ConfirmTransaction(_ context.Context, _ int64) (int64, bool, error) {
	f.calls++
	return f.userID, f.applied, f.err
}

type fakeLoyalty struct {
	userID  int64
	applied bool
	err     error
	calls   int
}

func (f *fakeLoyalty) PromotePreTransaction(_ context.Context, _ int64) (int64, bool, error) {
	f.calls++
	return f.userID, f.applied, f.err
}

func resultSignature(password2, amount string, invoiceID, userID int64) string {
	canonical := fmt.Sprintf("%s:%d:%s:Shp_id=%d", amount, invoiceID, password2, userID)
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func TestHandleResult(t *testing.T) {
	signer := NewSigner("arcan-shop", "pass1", "pass2")
	valid := resultSignature("pass2", "270", 1001, 42)

	t.Run("неверная подпись отклоняется до обращения к хранилищу", func(t *testing.T) {
		cityFake := &fakeCity{}
		loyaltyFake := &fakeLoyalty{}
		svc := NewService(signer, cityFake, loyaltyFake)

		err := svc.HandleResult(context.Background(), "270", "1001", "42", "deadbeef", 1001)
		require.ErrorIs(t, err, common.ErrBadSignature)
		assert.Zero(t, cityFake.calls)
		assert.Zero(t, loyaltyFake.calls)
	})

	t.Run("счёт совместимости подтверждается без лояльности", func(t *testing.T) {
		cityFake := &fakeCity{userID: 42, applied: true}
		loyaltyFake := &fakeLoyalty{}
		svc := NewService(signer, cityFake, loyaltyFake)

		err := svc.HandleResult(context.Background(), "270", "1001", "42", valid, 1001)
		require.NoError(t, err)
		assert.Equal(t, 1, cityFake.calls)
		assert.Zero(t, loyaltyFake.calls)
	})

	t.Run("незнакомый городу счёт уходит в лояльность", func(t *testing.T) {
		cityFake := &fakeCity{err: common.ErrTransactionNotFound}
		loyaltyFake := &fakeLoyalty{userID: 42, applied: true}
		svc := NewService(signer, cityFake, loyaltyFake)

		err := svc.HandleResult(context.Background(), "270", "1001", "42", valid, 1001)
		require.NoError(t, err)
		assert.Equal(t, 1, cityFake.calls)
		assert.Equal(t, 1, loyaltyFake.calls)
	})

	t.Run("повторное уведомление тоже успех", func(t *testing.T) {
		cityFake := &fakeCity{userID: 42, applied: false}
		svc := NewService(signer, cityFake, &fakeLoyalty{})

		err := svc.HandleResult(context.Background(), "270", "1001", "42", valid, 1001)
		require.NoError(t, err)
	})

	t.Run("ошибка хранилища пробрасывается", func(t *testing.T) {
		storeErr := errors.New("соединение потеряно")
		cityFake := &fakeCity{err: storeErr}
		svc := NewService(signer, cityFake, &fakeLoyalty{})

		err := svc.HandleResult(context.Background(), "270", "1001", "42", valid, 1001)
		require.ErrorIs(t, err, storeErr)
	})

	t.Run("неизвестный везде счёт возвращает ошибку", func(t *testing.T) {
		cityFake := &fakeCity{err: common.ErrTransactionNotFound}
		loyaltyFake := &fakeLoyalty{err: common.ErrTransactionNotFound}
		svc := NewService(signer, cityFake, loyaltyFake)

		err := svc.HandleResult(context.Background(), "270", "1001", "42", valid, 1001)
		require.ErrorIs(t, err, common.ErrTransactionNotFound)
	})
}
