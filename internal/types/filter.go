package types

// Filter carries common pagination parameters for list queries
type Filter struct {
	Limit  int    `form:"limit,default=50"`
	Offset int    `form:"offset,default=0"`
	Sort   string `form:"sort,default=created_at"`
	Order  string `form:"order,default=desc"`
}

const (
	FILTER_DEFAULT_LIMIT = 50
	FILTER_DEFAULT_SORT  = "created_at"
	FILTER_DEFAULT_ORDER = "desc"

	OrderDesc = "desc"
	OrderAsc  = "asc"
)

func GetDefaultFilter() Filter {
	return Filter{
		Limit:  FILTER_DEFAULT_LIMIT,
		Offset: 0,
		Sort:   FILTER_DEFAULT_SORT,
		Order:  FILTER_DEFAULT_ORDER,
	}
}

func (f Filter) GetLimit() int {
	if f.Limit <= 0 {
		return FILTER_DEFAULT_LIMIT
	}
	return f.Limit
}

func (f Filter) GetOffset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}
