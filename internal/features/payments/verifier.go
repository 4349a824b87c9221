// Package payments проверяет подписи платёжных уведомлений Robokassa
// и строит подписанные ссылки на оплату.
package payments

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Signer держит реквизиты магазина. Пара паролей выбирается один раз
// при создании (боевая или тестовая, в зависимости от режима DEBUG),
// дальше весь код работает с единственной активной парой.
type Signer struct {
	login     string
	password1 string // Подпись исходящих ссылок на оплату
	password2 string // Проверка входящих уведомлений об оплате
}

func NewSigner(login, password1, password2 string) *Signer {
	return &Signer{login: login, password1: password1, password2: password2}
}

// VerifyResult проверяет подпись уведомления об оплате. Канонической
// строкой служит "{amount}:{invoice_id}:{password2}:Shp_id={user_id}",
// сумма и номер счёта берутся как пришли, без нормализации. Сравнение
// без учёта регистра: Robokassa присылает подпись то верхним, то
// нижним регистром.
func (s *Signer) VerifyResult(amount, invoiceID, userID, signature string) bool {
	canonical := fmt.Sprintf("%s:%s:%s:Shp_id=%s", amount, invoiceID, s.password2, userID)
	return strings.EqualFold(md5Hex(canonical), signature)
}

// SignPayment подписывает параметры будущего платежа первым паролем.
func (s *Signer) SignPayment(amount string, invoiceID, userID int64) string {
	canonical := fmt.Sprintf("%s:%s:%d:%s:Shp_id=%d", s.login, amount, invoiceID, s.password1, userID)
	return md5Hex(canonical)
}

// PaymentURL строит ссылку на страницу оплаты Robokassa.
func (s *Signer) PaymentURL(amount string, invoiceID, userID int64, description string) string {
	params := url.Values{}
	params.Set("MerchantLogin", s.login)
	params.Set("OutSum", amount)
	params.Set("InvId", fmt.Sprintf("%d", invoiceID))
	params.Set("Description", description)
	params.Set("SignatureValue", s.SignPayment(amount, invoiceID, userID))
	params.Set("Shp_id", fmt.Sprintf("%d", userID))
	return "https://auth.robokassa.ru/Merchant/Index.aspx?" + params.Encode()
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
