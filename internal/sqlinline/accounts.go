package sqlinline

const QInsertAccount = `--sql 121ecdef-4f0b-4705-8f41-b613b6144f6d
with created as (
  insert into accounts(email, name, password_hash, credits, created_at, updated_at)
  values (lower($1::text), $2::text, $3::text, $4::int, now(), now())
  returning id, email, name, password_hash, credits, created_at, updated_at
),
opening as (
  insert into credit_entries(account_id, kind, amount, balance_after, reference)
  select id, 'signup', credits, credits, 'signup' from created
)
select id, email, name, password_hash, credits, created_at, updated_at
from created;
`

const QSelectAccountByID = `--sql 0fceb4de-3504-4a6d-9ab1-2434a4011005
select id, email, name, password_hash, credits, created_at, updated_at
from accounts
where id = $1::uuid
limit 1;
`

const QSelectAccountByEmail = `--sql 1c1dc474-2bbb-4cdb-9823-283b13bb3198
select id, email, name, password_hash, credits, created_at, updated_at
from accounts
where email = lower($1::text)
limit 1;
`

const QDeleteAccount = `--sql 113432e6-f38e-465d-b6ab-5a0c996a98fd
delete from accounts
where id = $1::uuid;
`
