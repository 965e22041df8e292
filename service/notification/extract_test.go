package notification

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name       string
		n          Notification
		want       string
		wantSource Source
	}{
		{
			name:       "thousand separator and comma decimals",
			n:          Notification{ReasonText: "Пользователь Иван Петров запросил пополнение карты **** 1234 на сумму 1 234,50 руб."},
			want:       "1234.50",
			wantSource: SourceParsed,
		},
		{
			name:       "no-break space separator",
			n:          Notification{ReasonText: "на сумму 12 000,00 руб."},
			want:       "12000",
			wantSource: SourceParsed,
		},
		{
			name:       "integer amount",
			n:          Notification{ReasonText: "запросил пополнение на сумму 500 руб. срочно"},
			want:       "500",
			wantSource: SourceParsed,
		},
		{
			name:       "structured amount wins",
			n:          Notification{Amount: decimal.NewNullDecimal(decimal.RequireFromString("75.25")), ReasonText: "на сумму 1 234,50 руб."},
			want:       "75.25",
			wantSource: SourceStructured,
		},
		{
			name:       "non-positive structured amount is ignored",
			n:          Notification{Amount: decimal.NewNullDecimal(decimal.Zero), ReasonText: "на сумму 300,00 руб."},
			want:       "300",
			wantSource: SourceParsed,
		},
		{
			name:       "no match falls back",
			n:          Notification{ReasonText: "Пользователь запросил пополнение"},
			want:       "1000",
			wantSource: SourceFallback,
		},
		{
			name:       "zero parsed amount falls back",
			n:          Notification{ReasonText: "на сумму 0,00 руб."},
			want:       "1000",
			wantSource: SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source := tt.n.ExtractAmount()
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
			assert.Equal(t, tt.wantSource, source)
			assert.Equal(t, tt.wantSource != SourceStructured, source.Lossy())
		})
	}
}

func TestExtractExpiry(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

	got, source := Notification{NewExpiryDate: "05/29"}.ExtractExpiry(now)
	assert.Equal(t, "05/29", got)
	assert.Equal(t, SourceStructured, source)

	got, source = Notification{ReasonText: "запросил создание новой банковской карты. Срок действия: 12/28"}.ExtractExpiry(now)
	assert.Equal(t, "12/28", got)
	assert.Equal(t, SourceParsed, source)

	got, source = Notification{NewExpiryDate: "garbage"}.ExtractExpiry(now)
	assert.Equal(t, "10/28", got)
	assert.Equal(t, SourceFallback, source)
}

func TestExtractEmail(t *testing.T) {
	email, source, ok := Notification{UserEmail: " anna@bank.test "}.ExtractEmail()
	assert.True(t, ok)
	assert.Equal(t, "anna@bank.test", email)
	assert.Equal(t, SourceStructured, source)

	email, source, ok = Notification{ReasonText: "Пользователь boris@bank.test запросил создание"}.ExtractEmail()
	assert.True(t, ok)
	assert.Equal(t, "boris@bank.test", email)
	assert.Equal(t, SourceParsed, source)

	_, _, ok = Notification{ReasonText: "Пользователь Борис запросил создание"}.ExtractEmail()
	assert.False(t, ok)
}
