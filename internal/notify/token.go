package notify

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// EncodeUnsubscribeToken は購読解除トークンを生成する。
// 形式は "userID:seriesID" のbase64url。同一入力から常に同一トークンが
// 導出される（決定的）ため、メール本文の解除リンクは再現可能。
func EncodeUnsubscribeToken(userID string, seriesID int64) string {
	payload := fmt.Sprintf("%s:%d", userID, seriesID)
	return base64.URLEncoding.EncodeToString([]byte(payload))
}

// DecodeUnsubscribeToken は購読解除トークンを復号する。
// 不正なbase64url、区切りなし、シリーズIDが数値でない場合は
// ok=falseを返す。panicすることはない。
func DecodeUnsubscribeToken(token string) (userID string, seriesID int64, ok bool) {
	decoded, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", 0, false
	}

	payload := string(decoded)
	idx := strings.LastIndex(payload, ":")
	if idx <= 0 || idx == len(payload)-1 {
		return "", 0, false
	}

	userID = payload[:idx]
	seriesID, err = strconv.ParseInt(payload[idx+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}

	return userID, seriesID, true
}
