package domain

import "errors"

var (
	// ErrInvalidArgument は数量・鍵長・プレフィックスなどの引数が不正な場合のエラー。
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRangeExceeded は数量が固定桁数のIDで表現できる範囲を超えた場合のエラー。
	ErrRangeExceeded = errors.New("range exceeded")

	// ErrEncryption は暗号器の初期化や乱数取得に失敗した場合のエラー。
	ErrEncryption = errors.New("encryption error")

	// ErrMalformedCiphertext は暗号文の構造が不正な場合のエラー。
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrWrongKey はパディングまたは認証タグの検証に失敗した場合のエラー。
	// 鍵の誤り・改ざん・破損は区別できない。
	ErrWrongKey = errors.New("padding error or wrong key")

	// ErrDuplicateBatch は同じプレフィックスのバッチが既に存在する場合のエラー。
	ErrDuplicateBatch = errors.New("batch already exists for this prefix")

	// ErrDuplicateIdentifier は同じIDまたは暗号文が既に保存されている場合のエラー。
	ErrDuplicateIdentifier = errors.New("identifier already exists")

	// ErrStubNotFound は暗号文に一致する食券が存在しない場合のエラー。
	ErrStubNotFound = errors.New("stub not found")

	// ErrIdentifierMismatch は復号結果が保存済みIDと一致しない場合のエラー。
	ErrIdentifierMismatch = errors.New("decrypted identifier does not match stored identifier")

	// ErrStubAlreadyRedeemed は食券が既に引き換え済みの場合のエラー。
	ErrStubAlreadyRedeemed = errors.New("stub is already redeemed")

	// ErrBatchNotFound は指定されたバッチが存在しない場合のエラー。
	ErrBatchNotFound = errors.New("batch not found")

	// ErrKeyWrappingMismatch は保存時と異なる方式で鍵を取り出そうとした場合のエラー。
	ErrKeyWrappingMismatch = errors.New("key wrapping mismatch")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
