package common

type Module string

const (
	ModuleCrowdfund Module = "crowdfund"
)

func (m Module) String() string {
	return string(m)
}
