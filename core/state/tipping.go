package state

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"tipvault/native/tipping"
)

const (
	seasonPrefix          = "tipping/season/"
	seasonCountKey        = "tipping/season-count"
	quotaPrefix           = "tipping/quota/"
	labelPrefix           = "tipping/label/"
	profilePrefix         = "tipping/profile/"
	blacklistPrefix       = "tipping/blacklist/"
	programDistributedKey = "tipping/program-distributed"
)

func seasonKey(id uint64) string {
	return seasonPrefix + strconv.FormatUint(id, 10)
}

func quotaKey(account [20]byte, seasonID uint64) string {
	return quotaPrefix + hex.EncodeToString(account[:]) + "/" + strconv.FormatUint(seasonID, 10)
}

// SeasonGet returns a copy of the stored season.
func (m *Manager) SeasonGet(id uint64) (*tipping.Season, bool, error) {
	season := new(tipping.Season)
	ok, err := m.getJSON(seasonKey(id), season)
	if err != nil || !ok {
		return nil, false, err
	}
	return season, true, nil
}

// SeasonPut stores the season record.
func (m *Manager) SeasonPut(season *tipping.Season) error {
	return m.putJSON(seasonKey(season.ID), season)
}

// SeasonCount returns the highest allocated season id.
func (m *Manager) SeasonCount() (uint64, error) {
	var count uint64
	ok, err := m.getJSON(seasonCountKey, &count)
	if err != nil || !ok {
		return 0, err
	}
	return count, nil
}

// SetSeasonCount stores the highest allocated season id.
func (m *Manager) SetSeasonCount(count uint64) error {
	return m.putJSON(seasonCountKey, count)
}

// QuotaGet returns the lazily created quota record for (account, season).
// The second return distinguishes "never touched" from a record reset to
// zero.
func (m *Manager) QuotaGet(account [20]byte, seasonID uint64) (*tipping.QuotaState, bool, error) {
	quota := new(tipping.QuotaState)
	ok, err := m.getJSON(quotaKey(account, seasonID), quota)
	if err != nil || !ok {
		return nil, false, err
	}
	return quota, true, nil
}

// QuotaPut stores the quota record.
func (m *Manager) QuotaPut(quota *tipping.QuotaState) error {
	return m.putJSON(quotaKey(quota.Account, quota.SeasonID), quota)
}

// ProgramDistributed returns the program-wide cumulative distribution.
func (m *Manager) ProgramDistributed() (*big.Int, error) {
	var encoded string
	ok, err := m.getJSON(programDistributedKey, &encoded)
	if err != nil || !ok {
		return big.NewInt(0), err
	}
	total, valid := new(big.Int).SetString(encoded, 10)
	if !valid {
		return big.NewInt(0), nil
	}
	return total, nil
}

// SetProgramDistributed stores the program-wide cumulative distribution. Only
// the quota ledger writes it.
func (m *Manager) SetProgramDistributed(total *big.Int) error {
	if total == nil {
		total = big.NewInt(0)
	}
	return m.putJSON(programDistributedKey, total.String())
}

// LabelGet returns a copy of the stored label profile.
func (m *Manager) LabelGet(id [32]byte) (*tipping.LabelProfile, bool, error) {
	label := new(tipping.LabelProfile)
	ok, err := m.getJSON(labelPrefix+hex.EncodeToString(id[:]), label)
	if err != nil || !ok {
		return nil, false, err
	}
	return label, true, nil
}

// LabelPut stores a label profile.
func (m *Manager) LabelPut(label *tipping.LabelProfile) error {
	return m.putJSON(labelPrefix+hex.EncodeToString(label.ID[:]), label)
}

// ProfileGet returns the account profile, if one was ever assigned.
func (m *Manager) ProfileGet(account [20]byte) (*tipping.AccountProfile, bool, error) {
	profile := new(tipping.AccountProfile)
	ok, err := m.getJSON(profilePrefix+hex.EncodeToString(account[:]), profile)
	if err != nil || !ok {
		return nil, false, err
	}
	return profile, true, nil
}

// ProfilePut stores an account profile.
func (m *Manager) ProfilePut(profile *tipping.AccountProfile) error {
	return m.putJSON(profilePrefix+hex.EncodeToString(profile.Account[:]), profile)
}

// Blacklisted reports whether the recipient is blocked.
func (m *Manager) Blacklisted(addr [20]byte) (bool, error) {
	var flag bool
	ok, err := m.getJSON(blacklistPrefix+hex.EncodeToString(addr[:]), &flag)
	if err != nil || !ok {
		return false, err
	}
	return flag, nil
}

// SetBlacklisted toggles the blacklist flag for a recipient.
func (m *Manager) SetBlacklisted(addr [20]byte, flag bool) error {
	return m.putJSON(blacklistPrefix+hex.EncodeToString(addr[:]), flag)
}
