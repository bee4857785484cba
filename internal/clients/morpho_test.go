package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/lendscope/internal/domain"
)

var testOwner = common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")

type graphqlHandler func(req graphqlRequest) string

func newGraphQLServer(t *testing.T, h graphqlHandler) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(h(req)))
	}))
}

func TestMorphoClient_FetchMarkets(t *testing.T) {
	srv := newGraphQLServer(t, func(req graphqlRequest) string {
		assert.Contains(t, req.Query, "GetMarkets")
		assert.EqualValues(t, 8453, req.Variables["chainId"])
		return `{"data":{"markets":{"items":[
			{
				"uniqueKey":"0xabc",
				"lltv":"860000000000000000",
				"whitelisted":true,
				"loanAsset":{"address":"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913","symbol":"USDC","decimals":6,"priceUsd":1.0001},
				"collateralAsset":{"address":"0x4200000000000000000000000000000000000006","symbol":"WETH","decimals":18,"priceUsd":null},
				"state":{"supplyAssets":"25000000000000","borrowAssets":20000000000000,"supplyApy":0.051,"borrowApy":0.06,"netSupplyApy":0.055,"utilization":0.8,
					"rewards":[{"supplyApr":0.004,"borrowApr":0,"asset":{"symbol":"MORPHO","address":"0x58D97B57BB95320F9a05dC918Aef65434969c2B2"}}]},
				"oracleAddress":"0x0000000000000000000000000000000000000001",
				"irmAddress":"0x0000000000000000000000000000000000000002"
			},
			{
				"uniqueKey":"0xidle",
				"lltv":"0",
				"whitelisted":true,
				"loanAsset":{"address":"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913","symbol":"USDC","decimals":6},
				"collateralAsset":null,
				"state":null
			}
		]}}}`
	})
	defer srv.Close()

	c := NewMorphoClient(zap.NewNop(), srv.URL, fastRetrier())
	markets, err := c.FetchMarkets(context.Background(), domain.ChainBase)
	require.NoError(t, err)
	require.Len(t, markets, 2)

	m := markets[0]
	assert.Equal(t, "0xabc", m.UniqueKey)
	assert.Equal(t, "860000000000000000", m.LLTV.String())
	assert.Equal(t, "USDC", m.LoanAsset.Symbol)
	require.NotNil(t, m.LoanAsset.PriceUsd)
	assert.Equal(t, "1.0001", m.LoanAsset.PriceUsd.String())
	require.NotNil(t, m.CollateralAsset)
	assert.Nil(t, m.CollateralAsset.PriceUsd)
	assert.Equal(t, "25000000000000", m.State.SupplyAssets.String())
	assert.Equal(t, "20000000000000", m.State.BorrowAssets.String())
	assert.Equal(t, "0.8", m.State.Utilization.String())
	require.Len(t, m.State.Rewards, 1)
	assert.Equal(t, "MORPHO", m.State.Rewards[0].AssetSymbol)
	assert.False(t, m.IsIdle())

	idle := markets[1]
	assert.True(t, idle.IsIdle())
	assert.Equal(t, "0", idle.State.SupplyAssets.String())
}

func TestMorphoClient_FetchUserPositions(t *testing.T) {
	srv := newGraphQLServer(t, func(req graphqlRequest) string {
		assert.Contains(t, req.Query, "supplyShares_gte: 1")
		assert.Equal(t, strings.ToLower(testOwner.Hex()), req.Variables["address"])
		return `{"data":{"marketPositions":{"items":[{
			"market":{"uniqueKey":"0xabc","lltv":"945000000000000000",
				"loanAsset":{"address":"0x01","symbol":"USDC","decimals":6,"priceUsd":1},
				"collateralAsset":{"address":"0x02","symbol":"wstETH","decimals":18},
				"state":{"supplyApy":0.04,"netSupplyApy":0.05,"utilization":0.9}},
			"supplyAssets":"1600000000",
			"supplyShares":"1500000000000000"
		}]}}}`
	})
	defer srv.Close()

	c := NewMorphoClient(zap.NewNop(), srv.URL, fastRetrier())
	positions, err := c.FetchUserPositions(context.Background(), testOwner, domain.ChainEthereum)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "1600000000", positions[0].CurrentValue().String())
	assert.Equal(t, "1500000000000000", positions[0].SupplyShares.String())
	assert.Equal(t, "wstETH", positions[0].Market.CollateralSymbol())
}

func TestMorphoClient_FetchUserTransactions(t *testing.T) {
	srv := newGraphQLServer(t, func(req graphqlRequest) string {
		assert.Contains(t, req.Query, "MarketSupply, MarketWithdraw")
		return `{"data":{"transactions":{"items":[
			{"hash":"0x01","timestamp":1700000000,"type":"MarketSupply",
				"data":{"shares":"1000","assets":"1000","market":{"uniqueKey":"0xabc","loanAsset":{"address":"0x01","symbol":"USDC","decimals":6}}}},
			{"hash":"0x02","timestamp":"1700000100","type":"MarketWithdraw",
				"data":{"shares":"400","assets":"410","market":{"uniqueKey":"0xabc","loanAsset":{"address":"0x01","symbol":"USDC","decimals":6}}}},
			{"hash":"0x03","timestamp":1700000200,"type":"MarketBorrow","data":{}}
		]}}}`
	})
	defer srv.Close()

	c := NewMorphoClient(zap.NewNop(), srv.URL, fastRetrier())
	records, err := c.FetchUserTransactions(context.Background(), testOwner, domain.ChainEthereum)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.TxSupply, records[0].Kind)
	assert.Equal(t, "1000", records[0].AssetAmount.Dec())
	assert.Equal(t, "1000", records[0].ShareAmount.Dec())
	assert.Equal(t, int64(1700000000), records[0].Timestamp)

	assert.Equal(t, domain.TxWithdraw, records[1].Kind)
	assert.Equal(t, "410", records[1].AssetAmount.Dec())
	assert.Equal(t, int64(1700000100), records[1].Timestamp)
	require.NotNil(t, records[1].TxHash)
	assert.Equal(t, common.HexToHash("0x02"), *records[1].TxHash)

	basis, ok := domain.Replay(records)
	require.True(t, ok)
	assert.Equal(t, "590", basis.NetDeposited.String())
}

func TestMorphoClient_FetchUserTransactionsPaging(t *testing.T) {
	const item = `{"hash":"0x01","timestamp":1,"type":"MarketSupply",
		"data":{"shares":"1","assets":"1","market":{"uniqueKey":"0xabc","loanAsset":{"address":"0x01","symbol":"USDC","decimals":6}}}}`

	tests := []struct {
		name      string
		pages     []int
		expectErr bool
		expectLen int
	}{
		{name: "short last page completes history", pages: []int{2, 1}, expectLen: 3},
		{name: "full pages up to the limit are unavailable", pages: []int{2, 2}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var skips []float64
			srv := newGraphQLServer(t, func(req graphqlRequest) string {
				skip, _ := req.Variables["skip"].(float64)
				skips = append(skips, skip)
				items := make([]string, tt.pages[int(skip)/2])
				for i := range items {
					items[i] = item
				}
				return `{"data":{"transactions":{"items":[` + strings.Join(items, ",") + `]}}}`
			})
			defer srv.Close()

			c := NewMorphoClient(zap.NewNop(), srv.URL, fastRetrier())
			c.pageSize, c.maxPages = 2, 2

			records, err := c.FetchUserTransactions(context.Background(), testOwner, domain.ChainEthereum)
			assert.Equal(t, []float64{0, 2}, skips)
			if tt.expectErr {
				assert.Nil(t, records)
				assert.True(t, errors.Is(err, ErrUnavailable))
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.expectLen)
		})
	}
}

func TestMorphoClient_GraphQLErrorsAreUnavailable(t *testing.T) {
	srv := newGraphQLServer(t, func(graphqlRequest) string {
		return `{"errors":[{"message":"rate limited"}]}`
	})
	defer srv.Close()

	c := NewMorphoClient(zap.NewNop(), srv.URL, fastRetrier())
	records, err := c.FetchUserTransactions(context.Background(), testOwner, domain.ChainEthereum)
	assert.Nil(t, records)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestToUint256(t *testing.T) {
	_, err := toUint256(mustDecimal(t, "-1"))
	assert.Error(t, err)

	v, err := toUint256(mustDecimal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935"))
	require.NoError(t, err)
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", v.Dec())

	_, err = toUint256(mustDecimal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639936"))
	assert.Error(t, err)
}
