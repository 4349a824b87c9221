// Package api — params.go разбирает параметры пути и query-строки.
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// URLInt64 читает числовой параметр пути.
func URLInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректный параметр %s", name)
	}
	return v, nil
}

// QueryInt64 читает обязательный числовой query-параметр.
func QueryInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректный параметр %s", name)
	}
	return v, nil
}

// QueryIntOptional читает необязательный числовой query-параметр.
// Отсутствие параметра — nil, не ошибка.
func QueryIntOptional(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("некорректный параметр %s", name)
	}
	return &v, nil
}

// QueryBool читает булев query-параметр (отсутствие — false).
func QueryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
