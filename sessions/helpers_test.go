package sessions_test

import "net/http"

func cookieNamed(name string) *http.Cookie {
	return &http.Cookie{Name: name, Value: "x", Path: "/"}
}
