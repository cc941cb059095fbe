package domain

type PaymentMethod string

const (
	PaymentMethodExternalGateway  PaymentMethod = "external-gateway"
	PaymentMethodInternalCurrency PaymentMethod = "internal-currency"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodExternalGateway || m == PaymentMethodInternalCurrency
}
