package repository

import "checkout-core/pkg/money"

func moneyFromString(s string) (money.Money, error) {
	return money.FromString(s)
}
