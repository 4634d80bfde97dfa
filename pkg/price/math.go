package price

import (
	"math"
	"math/big"
)

// q96 is 2^96, the fixed-point scale of Uniswap sqrt prices.
var q96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// sqrtPriceToETH converts a V3/V4 sqrtPriceX96 into the human price of the
// token in wrapped-native terms. tokenIsCurrency0 says which slot the token
// occupies; tokenDecimals adjusts from raw units (wrapped native is 18).
func sqrtPriceToETH(sqrtPriceX96 *big.Int, tokenIsCurrency0 bool, tokenDecimals uint8) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return 0
	}

	sqrt := new(big.Float).SetInt(sqrtPriceX96)
	sqrt.Quo(sqrt, q96)
	// ratio = raw currency1 per raw currency0
	ratio := new(big.Float).Mul(sqrt, sqrt)
	r, _ := ratio.Float64()
	if r == 0 {
		return 0
	}

	if tokenIsCurrency0 {
		// price of currency0 in currency1, shifted to human units
		return r * math.Pow10(int(tokenDecimals)-18)
	}
	return (1 / r) * math.Pow10(int(tokenDecimals)-18)
}

// reservesToETH prices a token from V2-style reserves: wrapped-native
// reserve over token reserve, adjusted for token decimals.
func reservesToETH(tokenReserve, nativeReserve *big.Int, tokenDecimals uint8) float64 {
	if tokenReserve == nil || tokenReserve.Sign() == 0 || nativeReserve == nil {
		return 0
	}
	tr, _ := new(big.Float).SetInt(tokenReserve).Float64()
	nr, _ := new(big.Float).SetInt(nativeReserve).Float64()
	if tr == 0 {
		return 0
	}
	return (nr / tr) * math.Pow10(int(tokenDecimals)-18)
}

// weiToEth converts a raw 18-decimal amount to a float.
func weiToEth(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(wei).Float64()
	return f / 1e18
}

// rawToHuman scales a raw token amount by its decimals.
func rawToHuman(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(raw).Float64()
	return f / math.Pow10(int(decimals))
}
