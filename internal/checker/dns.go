package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/leozw/domain-activator/internal/core"
)

var defaultNameservers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// Exchanger sends one DNS query. *dns.Client satisfies it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// DNSChecker compares a domain's CNAME, or its A records when no CNAME is
// published, against the platform target.
type DNSChecker struct {
	client      Exchanger
	nameservers []string
	target      core.PlatformTarget
	timeout     time.Duration
	now         func() time.Time
}

func NewDNSChecker(client Exchanger, target core.PlatformTarget, nameservers []string, timeout time.Duration) *DNSChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if client == nil {
		client = &dns.Client{Timeout: timeout}
	}
	if len(nameservers) == 0 {
		nameservers = defaultNameservers
	}
	return &DNSChecker{
		client:      client,
		nameservers: nameservers,
		target:      target,
		timeout:     timeout,
		now:         time.Now,
	}
}

// VerifyCNAME never returns an error: resolution failures are reported as
// an unverified result with the cause in Detail.
func (d *DNSChecker) VerifyCNAME(ctx context.Context, domain string) core.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.query(ctx, domain, dns.TypeCNAME)
	if err != nil {
		return d.unverified(domain, core.StateError, "dns_error: "+err.Error())
	}
	if resp.Rcode == dns.RcodeNameError {
		return d.unverified(domain, core.StateUnconfigured, "nxdomain")
	}
	if resp.Rcode != dns.RcodeSuccess {
		return d.unverified(domain, core.StateError, "dns_error: rcode "+dns.RcodeToString[resp.Rcode])
	}

	for _, ans := range resp.Answer {
		if cname, ok := ans.(*dns.CNAME); ok {
			return d.compareCNAME(domain, cname.Target)
		}
	}

	// Apex domains cannot carry a CNAME, fall back to A records.
	resp, err = d.query(ctx, domain, dns.TypeA)
	if err != nil {
		return d.unverified(domain, core.StateError, "dns_error: "+err.Error())
	}
	if resp.Rcode != dns.RcodeSuccess {
		if resp.Rcode == dns.RcodeNameError {
			return d.unverified(domain, core.StateUnconfigured, "nxdomain")
		}
		return d.unverified(domain, core.StateError, "dns_error: rcode "+dns.RcodeToString[resp.Rcode])
	}

	var ips []string
	for _, ans := range resp.Answer {
		switch rr := ans.(type) {
		case *dns.A:
			ips = append(ips, rr.A.String())
		case *dns.CNAME:
			// Some resolvers only surface the alias on an A query.
			return d.compareCNAME(domain, rr.Target)
		}
	}
	return d.compareA(domain, ips)
}

func (d *DNSChecker) compareCNAME(domain, target string) core.CheckResult {
	got := strings.TrimSuffix(strings.ToLower(target), ".")
	want := d.target.NormalizedCNAME()
	var res core.CheckResult
	switch {
	case want != "" && got == want:
		res = core.Verified(core.SignalDNS, domain, "cname "+got, d.now())
	case want == "":
		res = d.unverified(domain, core.StateMismatch, fmt.Sprintf("cname %s, platform publishes A records only", got))
	default:
		res = d.unverified(domain, core.StateMismatch, fmt.Sprintf("cname %s, expected %s", got, want))
	}
	res.Alias = got
	return res
}

func (d *DNSChecker) compareA(domain string, ips []string) core.CheckResult {
	if len(ips) == 0 {
		return d.unverified(domain, core.StateUnconfigured, "no CNAME or A records")
	}
	if len(d.target.ARecords) == 0 {
		return d.unverified(domain, core.StateMismatch, fmt.Sprintf("a %s, expected cname %s", strings.Join(ips, ","), d.target.NormalizedCNAME()))
	}

	// Every published address must belong to the platform, otherwise part
	// of the traffic would still land elsewhere.
	for _, ip := range ips {
		if !slices.Contains(d.target.ARecords, ip) {
			return d.unverified(domain, core.StateMismatch,
				fmt.Sprintf("a %s, expected one of %s", strings.Join(ips, ","), strings.Join(d.target.ARecords, ",")))
		}
	}
	return core.Verified(core.SignalDNS, domain, "a "+strings.Join(ips, ","), d.now())
}

// query tries each nameserver in turn until one answers.
func (d *DNSChecker) query(ctx context.Context, domain string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), qtype)
	m.RecursionDesired = true

	var errs []error
	for _, ns := range d.nameservers {
		resp, _, err := d.client.ExchangeContext(ctx, m, ns)
		if err == nil && resp != nil {
			return resp, nil
		}
		if err == nil {
			err = errors.New("empty response")
		}
		errs = append(errs, fmt.Errorf("%s: %w", ns, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

func (d *DNSChecker) unverified(domain string, state core.CheckState, detail string) core.CheckResult {
	return core.Unverified(core.SignalDNS, domain, state, detail, d.now())
}

// NameserverAddr appends the default DNS port when addr has none.
func NameserverAddr(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, "53")
}
